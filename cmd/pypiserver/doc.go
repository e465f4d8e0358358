// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// pypiserver serves a PEP 503 simple repository backed by a local
// SQLite catalog and a filesystem artifact store.
//
// Routes:
//
//	GET    /simple/                                  project index
//	GET    /simple/<project>/                        file links for one project
//	GET    <prefix><project>/<version>/<filename>    artifact download
//	POST   /                                         upload (:action=file_upload or file_replace)
//	DELETE <prefix><project>/<version>               unpublish
//	GET    /healthz                                  liveness
//	GET    /metrics                                  Prometheus metrics, if enabled
//
// <prefix> is http.packages_prefix, "/packages/" by default. Project
// pages redirect to the normalised project name. Index pages are
// gzip-compressed for clients that accept it.
//
// Configuration is a YAML file named by --config or PYPISERVER_CONFIG;
// see lib/config.
package main
