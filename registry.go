/*
	Copyright NetFoundry, Inc.

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

package xrouter

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Registry describes a registry of name to Factory registrations. The
// specification compiler consumes registries as opaque lookup capabilities;
// how they are populated is left to the embedding application.
type Registry[T any] interface {
	Add(name string, factory Factory[T]) error
	Lookup(name string) (Factory[T], bool)
}

// RegistryMap is a basic Registry implementation backed by a simple mapping
// of name (string) to Factory instances
type RegistryMap[T any] struct {
	factories map[string]Factory[T]
}

// NewRegistryMap creates a new RegistryMap
func NewRegistryMap[T any]() *RegistryMap[T] {
	return &RegistryMap[T]{
		factories: map[string]Factory[T]{},
	}
}

// Add adds a factory to the registry. Errors if a previous factory with the
// same name is registered.
func (registry *RegistryMap[T]) Add(name string, factory Factory[T]) error {
	logrus.Debugf("adding xrouter factory with name: %v", name)
	if _, ok := registry.factories[name]; ok {
		return fmt.Errorf("factory name [%s] already registered", name)
	}

	if factory == nil {
		return fmt.Errorf("factory for name [%s] must not be nil", name)
	}

	registry.factories[name] = factory

	return nil
}

// Lookup retrieves a factory based on a name. The second return value is
// false if no factory for the name is registered.
func (registry *RegistryMap[T]) Lookup(name string) (Factory[T], bool) {
	factory, ok := registry.factories[name]
	return factory, ok
}

// Registries bundles the three lookup capabilities symbolic references are
// resolved against: inbound/outbound middleware, request handlers, and error
// handlers.
type Registries struct {
	Middleware    Registry[Middleware]
	Handlers      Registry[Middleware]
	ErrorHandlers Registry[ErrorHandler]
}

// NewRegistries creates a Registries bundle backed by empty RegistryMap
// instances.
func NewRegistries() Registries {
	return Registries{
		Middleware:    NewRegistryMap[Middleware](),
		Handlers:      NewRegistryMap[Middleware](),
		ErrorHandlers: NewRegistryMap[ErrorHandler](),
	}
}

var _ Registry[Middleware] = (*RegistryMap[Middleware])(nil)
