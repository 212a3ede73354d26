// Copyright (C) 2025 dwn-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesDispatched tracks handlers.Registry.Dispatch invocations.
	MessagesDispatched = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "dispatched_total",
			Help:      "Total number of messages dispatched to an interface/method handler",
		},
		[]string{"interface", "method", "status"}, // status: ok, error
	)

	// AuthorizationDenials tracks messages rejected by auth.Authorize.
	AuthorizationDenials = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "authorization_denied_total",
			Help:      "Total number of messages denied by authorization",
		},
		[]string{"interface", "method"},
	)

	// DispatchDuration tracks the full pipeline latency per handler.
	DispatchDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handlers",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of the parse-authenticate-authorize-persist-emit-reply pipeline",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to 1.6s
		},
		[]string{"interface", "method"},
	)
)
