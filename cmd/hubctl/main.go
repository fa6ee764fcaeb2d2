// Command hubctl is the operator CLI for the sighting hub: schema migrations, user
// provisioning and job maintenance.
//
// Usage:
//
//	hubctl migrate
//	hubctl create-user --email ops@example.org --name "Ops" --admin
//	hubctl requeue --all-unprocessed
//	hubctl requeue --sighting 0190c8a2-...
//	hubctl backfill-case 0190c8a2-...
//
// Environment variables are the same as the API server's (DATABASE_URL is required).
package main

func main() {
	Execute()
}
