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

// Package metrics defines Prometheus counters and histograms for the
// message pipeline, store backends, and event broker, all registered
// against the exported Registry and served at /metrics by Handler. No
// other package in this module updates these series.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "dwn"

// Registry collects every metric this package defines. Handed to
// promhttp.HandlerFor by server.go rather than using the global default
// registry, so tests can spin up isolated collectors per case.
var Registry = prometheus.NewRegistry()
