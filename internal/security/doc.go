// Package security derives a read-only posture report from engine
// configuration. The root package re-exports the result as
// accesshub.SecurityReport.
package security
