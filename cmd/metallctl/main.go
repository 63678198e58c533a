// Command metallctl inspects and manipulates persistent heap datastores
// from the shell: create, info, ls, stat, snapshot, rm, and check, all
// driven through the manager package's public API.
package main

func main() {
	execute()
}
