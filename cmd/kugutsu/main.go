// Command kugutsu drives the development pipeline end to end: it takes a
// single natural-language request, decomposes it into a task list, and
// hands that list to the Pipeline Manager to plan, develop, review, and
// merge in parallel (spec §6).
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:]))
}
