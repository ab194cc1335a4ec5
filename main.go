package main

import "btcforge/internal/btcforge"

func main() {
	btcforge.Main()
}
