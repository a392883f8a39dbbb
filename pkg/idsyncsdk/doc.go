/*
Package idsyncsdk is a client for the idsync engine HTTP API.

# SDKClient vs Session

The package is organized around two types:

  - SDKClient: public endpoints (register, login, sync, health)
  - Session: account endpoints that need the session token issued by login

Create an SDKClient for the engine running on this device:

	client := idsyncsdk.NewSDKClient("http://localhost:8080")

	// Register a new identity
	res, err := client.Register(ctx, idsyncsdk.RegisterRequest{...})

	// Sign in; a conflict comes back as a result, not an error
	res, err := client.Login(ctx, "alice@example.com", password)
	if res.RequiresResolution {
		res, err = client.ResolveConflict(ctx, res.ConflictID, resolutions)
	}

	// Use the session token for account changes
	session := client.NewSession(res.SessionToken)
	_, err = session.ChangePassword(ctx, current, next)

# Errors

Every non-2xx response is returned as an *APIError carrying the HTTP status and
the error code from the body. Use IsCode to branch on a specific code:

	if idsyncsdk.IsCode(err, idsyncsdk.ErrorCodeInvalidCredentials) {
		...
	}
*/
package idsyncsdk
