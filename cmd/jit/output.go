package main

import (
	"fmt"

	"github.com/fatih/color"
)

// printStatus prints a colored symbol followed by a message.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
