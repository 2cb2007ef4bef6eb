// Command go-sonic is a Subsonic client: it follows what users are playing,
// downloads media and segmented video, and serves a small HTTP API.
package main

func main() {
	Execute()
}
