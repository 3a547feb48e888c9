/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

/*
Package xrouter provides an embeddable engine for routing HTTP requests to middleware chains by hostname and pathname.

Basics

xrouter separates routing into a declarative half and a runtime half. The declarative half is a tree of specification
values - VirtualHostSpec, RouteSpec, TargetSpec - typically parsed from a YAML configuration section by RouterConfig
but equally constructable in code. Specifications name their middleware, handlers, and error handlers symbolically;
a set of Registries maps those names to Factory instances that produce the executable functions. Both RouterConfig
and the specification types assume configuration is presented as a map of interface{}-to-interface{} values.

Compiling a specification flattens nested route declarations into leaf routes, concatenating patterns and middleware
chains along the way, and resolves every symbolic reference against the registries. The output is the runtime half:
VirtualHost and Route values holding compiled PatternMatcher instances and Target values holding fully composed
chains. Compilation is all-or-nothing, so a Router never observes a partially built table.

The Router holds the active table and dispatches one request at a time against it: virtual host by hostname, Route by
pathname, Target by method, then the target's chain runs element by element, each receiving the Response produced by
the element before it. Errors abandon the chain and walk the error handler cascade (target handlers, then route
handlers, then built-in rendering for HttpError values). ResetVirtualHosts swaps the entire table atomically, which
makes hot reload safe while requests are in flight - in-flight dispatches finish against the table they started with.

The engine is transport neutral and operates on its own Request and Response values. HttpShim adapts a Router to
http.Handler for use with the standard library's http.Server, covering request identity, forwarded-header URL
reconstruction, panic recovery, and response writing. cmd/xrouter-demo wires the whole stack together behind a YAML
configuration file with SIGHUP reload.
*/
package xrouter
