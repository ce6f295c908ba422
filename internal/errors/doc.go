// Package errors provides coded, user-facing errors for the beachbev CLI.
//
// Each code (e.g., "B010") maps to a category, a short message, a longer
// explanation and an optional hint. Library packages return plain typed
// errors; the CLI converts the ones it reports with FromError:
//
//	if err := srv.Run(ctx); err != nil {
//	    return errors.FromError(err, errors.CodeListen).
//	        WithSuggestion("Use --https-port to pick another port")
//	}
//
// Format renders the error for a terminal:
//
//	ERROR B011: Could not listen on port
//
//	  listen tcp :443: bind: permission denied
//
//	  Another process may already be using the port, or binding it needs
//	  elevated privileges.
//
//	  Hint: Use --https-port and --http-port to pick free ports.
package errors
