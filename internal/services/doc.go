// Package services defines the error markers shared by the relay components.
//
// Components wrap failures with Wrap so the CLI and API server can classify
// them consistently (validation vs not found vs conflict vs upstream outage)
// without string matching.
package services
