// Command switchyard serves and drives the request orchestrator.
package main

func main() {
	Execute()
}
