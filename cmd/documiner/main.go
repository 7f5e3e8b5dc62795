package main

import "github.com/entrepeneur4lyf/documiner/cmd/documiner/cmd"

func main() {
	cmd.Execute()
}
