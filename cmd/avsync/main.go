// Command avsync keeps the map client in sync with the network simulation
// backend.
package main

func main() {
	Execute()
}
