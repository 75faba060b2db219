// Costhound - Cloud Cost Waste Scanner
// Scan. Classify. Report.
package main

func main() {
	Execute()
}
