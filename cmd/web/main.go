package main

import "moviestream_backend/internal/app"

func main() {
	app.Run()
}
