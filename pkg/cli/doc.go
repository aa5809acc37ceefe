// Package cli provides the envlink command-line interface.
//
// # Commands
//
// resolve: resolve variables via a server or a local workspace file
//
//	envlink resolve -project webapp
//	envlink resolve -project webapp -variable DATABASE_URL
//	envlink resolve -f envlink.yaml -json
//
// impact: show what changes if a variable's value changes
//
//	envlink impact -project shared -name DB_HOST
//
// validate: check a workspace file for malformed, dangling, or cyclic
// variables (non-zero exit on any problem)
//
//	envlink validate -f envlink.yaml
//
// capture: record an export of a project's resolved values, attaching
// git metadata discovered from the destination checkout
//
//	envlink capture -project webapp -path /srv/webapp/.env
//
// # Configuration
//
// Server URL:
//
//	export ENVLINK_SERVER_URL="https://envlink.example.com"
//	# Or use the -server flag
package cli
