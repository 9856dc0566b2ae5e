// Command mealctl runs cascades and searches against the food graph from a
// terminal.
package main

func main() {
	Execute()
}
