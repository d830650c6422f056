// Package css parses stylesheets into an order preserving AST and prints them
// back. Parsing is built on the tdewolff grammar parser; declaration values are
// kept as text so that callers can rewrite them without a full value model.
package css
