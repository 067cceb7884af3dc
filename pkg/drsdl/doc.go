// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

/*
Package drsdl downloads GA4GH Data Repository Service (DRS) objects from
cloud object storage.

A manifest lists opaque drs://host/id URIs. For each one, a Client
resolves metadata (size, name, checksum), signs a short-lived access URL,
and the batch orchestrator splits the object into byte-range parts,
downloads the parts with bounded concurrency, reassembles them in order,
and verifies the result against the resolved checksum and size.

# Resumability

All resumption state lives in the part filename convention
(<name>.<start>.<end>.part) on disk. No sidecar manifest is written: a
second invocation over the same manifest and destination inspects existing
part files and the final output file to decide what still needs fetching.

# Providers

The orchestrator depends only on the Client capability (Resolve, Sign,
DownloadPart); concrete backends live under internal/provider and share no
code by inheritance — only ordinary helper functions.
*/
package drsdl
