// Command melodyctl is the offline companion to the API server: it dumps the
// chord vocabulary, previews palettes, builds the retrieval index and runs a
// local chat session.
package main

func main() {
	Execute()
}
