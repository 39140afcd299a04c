// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package datasource downloads, cleans, stores and incrementally updates the
// history of individual symbols.
//
// A Source knows how to download a symbol's history from a specific provider:
// YahooFinance for daily stock and ETF bars, and Fred for economic time series
// such as the Federal Funds effective rate (DFF). SymbolData ties a Source to a
// db.Storage: it keeps the stored copy fresh, re-downloading it only when it is
// older than the grace period.
//
// HTTP requests go through github.com/stockparfait/fetch, so the client can be
// replaced in tests with fetch.UseClient. The base URLs are package variables
// for the same reason.
package datasource
