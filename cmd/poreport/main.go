// Command poreport runs purchasing reports from the command line.
package main

func main() {
	Execute()
}
