// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observe wires the OpenTelemetry SDK behind the engine's
// observability seams. It provides a Provider that owns a trace provider and
// a meter provider, span exporters for OTLP (gRPC and HTTP) and the console,
// a Prometheus metrics endpoint, and a Metrics recorder for per-execution
// measurements.
//
// Everything here is opt-in: the engine runs with a nil tracer and nil
// metrics recorder by default, and the CLI only constructs a Provider when
// observability is configured.
package observe
