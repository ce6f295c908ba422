// Package manager holds the site's feature managers.
//
// A manager attaches to a client.Connection, registers handlers for the
// packets it cares about and sends requests from its lifecycle hooks:
//
//	login := manager.NewLogin(conn, nil, logger)
//	email := manager.NewEmail(conn, nil, logger)
//	login.OnLoggedIn(func(ctx context.Context, s manager.Session) {
//		_ = conn.Attach(email)
//	})
//	_ = conn.Attach(login)
//
// Everything learned on a connection, storage credentials included, is
// dropped in OnClose and requested again on reopen.
package manager
