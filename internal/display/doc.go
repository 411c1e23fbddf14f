// Package display formats user-facing console notices for trialctl commands.
package display
