// Command harvester collects job postings into a deduplicated store.
package main

import "github.com/JakeFAU/jobpost-harvester/cmd"

func main() {
	cmd.Execute()
}
