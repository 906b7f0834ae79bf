// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

// echoGuard marks property changes caused by an incoming frame.
// It is a plain flag; the Bridge mutex serializes every access.
type echoGuard struct {
	held bool
}

// acquire sets the guard and returns its release func.
// Use as: defer g.acquire()()
func (g *echoGuard) acquire() func() {
	prev := g.held
	g.held = true
	return func() { g.held = prev }
}

// active reports whether an incoming frame is being applied
func (g *echoGuard) active() bool {
	return g.held
}
