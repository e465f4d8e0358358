// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service runs the registry's network listener.
//
// [HTTPServer] owns the TCP listener and graceful shutdown; callers
// supply routing. Serve blocks until its context is cancelled, then
// stops accepting connections and waits for in-flight requests (an
// upload being written to the artifact store, a download being
// streamed) up to the configured timeout.
package service
