package main

import "commentreview/internal/app"

func main() {
	app.Main()
}
