package main

import "github.com/ValentinKolb/liveversion/cmd"

func main() {
	cmd.Execute()
}
