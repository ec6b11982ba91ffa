package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/iwanowww/supers"
)

func main() {
	h, err := supers.New(
		supers.WithSeed(4711),
		supers.WithLogger(supers.NewTextLogger(slog.LevelDebug)),
	)
	if err != nil {
		log.Fatalf("failed to create hierarchy: %v", err)
	}

	// Single definitions: each type's table is built and published
	// before Define returns.
	object, err := h.Define("Object", nil)
	if err != nil {
		log.Fatal(err)
	}
	serializable, err := h.DefineInterface("Serializable")
	if err != nil {
		log.Fatal(err)
	}
	number, err := h.Define("Number", object, serializable)
	if err != nil {
		log.Fatal(err)
	}
	integer, err := h.Define("Integer", number)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Integer <: Number       ", integer.IsSubtypeOf(number))
	fmt.Println("Integer <: Serializable ", integer.IsSubtypeOf(serializable))
	fmt.Println("Number  <: Integer      ", number.IsSubtypeOf(integer))

	// Bulk linking: independent types build concurrently.
	defs := []supers.TypeDef{
		{Name: "Comparable", Interface: true},
		{Name: "Long", Super: "Number", Interfaces: []string{"Comparable"}},
		{Name: "Double", Super: "Number", Interfaces: []string{"Comparable"}},
	}
	if _, err := h.DefineAll(context.Background(), defs); err != nil {
		log.Fatal(err)
	}

	long, _ := h.Lookup("Long")
	comp, _ := h.Lookup("Comparable")
	fmt.Println("Long    <: Comparable   ", long.IsSubtypeOf(comp))
	fmt.Println("types defined:          ", h.Len())
}
