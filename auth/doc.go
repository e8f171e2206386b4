// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides ID generation and bearer-token identity.

# IDs

Reports, interactions and trust history rows use random UUIDs:

	id := auth.NewID()

Station ids arrive from the geospatial resolver and must parse as UUIDs
(see ValidUUID).

# User Tokens

The engine performs no authentication of its own. When a JWT secret is
configured, the gateway's HS256 bearer token is checked and its subject
becomes the user id:

	userID, err := auth.ParseUserToken(token, secret)

IssueUserToken signs the same shape of token for tests and local tooling.
*/
package auth
