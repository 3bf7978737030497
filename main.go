package main

import "travel-diary-backend/cmd"

func main() {
	cmd.Execute()
}
