// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads pypiserver's YAML configuration.
//
// Configuration comes from exactly one file, named by the
// PYPISERVER_CONFIG environment variable ([Load]) or a --config flag
// ([LoadFile]). There is no discovery and no environment override of
// individual keys.
//
// Loading runs in a fixed order: built-in defaults, then the file,
// then the file's section for the selected environment (development,
// staging or production), then ${VAR} and ${VAR:-default} expansion in
// path fields. [Config.Validate] checks the result. Production without
// an explicit section logs JSON.
//
//	environment: production
//	catalog:
//	  path: ${PYPISERVER_ROOT}/catalog.db
//	artifacts:
//	  root: ${PYPISERVER_ROOT}/packages
//	http:
//	  address: ":8080"
//	  shutdown_timeout: 10s
//
// The artifact root is never created: it must exist before the server
// starts. [Config.EnsurePaths] only creates the catalog's directory.
package config
