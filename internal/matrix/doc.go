// Package matrix is a minimal client for the Matrix client-server API.
//
// It covers the three calls matrixsend needs: password login, sending a
// single m.room.message event, and releasing connections. Anything else
// (sync, encryption, room membership) is out of scope.
//
// # Client Usage
//
//	client, err := matrix.NewClient("matrix.example.org")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	session, err := client.Login(ctx, "@bot:example.org", password, "matrixsend")
//	if err != nil {
//		return err
//	}
//
//	eventID, err := client.SendText(ctx, "!room:example.org", "deploy finished")
//
// A client created from stored credentials skips the login step:
//
//	client, err := matrix.NewClient(creds.Homeserver, matrix.WithAccessToken(creds.AccessToken))
//
// # Endpoints
//
//   - POST /_matrix/client/v3/login: m.login.password with an m.id.user identifier
//   - PUT /_matrix/client/v3/rooms/{roomId}/send/m.room.message/{txnId}
//
// Transaction ids are random UUIDs, one per SendText call.
//
// # Error Handling
//
// Responses with a status of 400 or above are decoded into *Error, which
// carries the Matrix errcode (for example M_FORBIDDEN) when the server sent
// one. Network failures are wrapped with the step that failed:
//
//   - "execute request: dial tcp: connection refused"
//   - "matrix: M_FORBIDDEN: Invalid username or password (status 403)"
//
// The client does not retry. Callers decide whether a failure is final.
//
// # Tracing
//
// Login and SendText each run inside a span from the global OpenTelemetry
// tracer provider, so spans are only exported when the caller has installed
// one.
package matrix
