package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"sort"
)

func printScripts() {
	fmt.Println("Scripts:")
	keys := make([]string, 0, len(scriptMap))
	for key := range scriptMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Println("\t" + key)
	}
}

func main() {
	flag.Parse()

	script := flag.Arg(0)
	fn, ok := scriptMap[script]
	if !ok {
		fmt.Printf(
			"you must specify a valid script, '%s' is not a valid script.\n",
			script,
		)
		printScripts()
		os.Exit(1)
	}

	fn()
}

func cmd(name string, args ...string) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fullCmd := name
	for _, a := range args {
		fullCmd += " "
		fullCmd += a
	}

	fmt.Printf("$ %s\n", fullCmd)
	err := cmd.Run()
	if err != nil {
		os.Exit(1)
	}
}

var scriptMap = map[string]func(){
	"dev:apply_history_schema": migrateHistory,
	"dev:diag":                 diag,
	"dev:run":                  run,
}

func migrateHistory() {
	cmd(
		"atlas", "schema", "apply",
		"-u", "sqlite://dev/.state/history.db",
		"--to", "file://internal/history/db/schema.sql",
		"--dev-url", "sqlite://dev?mode=memory",
	)
}

func diag() {
	cmd("go", "run", "./cmd/scraper-cli", "diag", "-v")
}

func run() {
	cmd("go", "run", "./cmd/scraper-cli", "run", "-v")
}
