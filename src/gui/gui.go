// Package gui hosts the native region-selection overlay window.
package gui

import (
	"errors"
	"image"
	"log"

	"screenshot-native/src/selection"
)

// ErrStartup is returned when the overlay could not be brought up at all.
var ErrStartup = errors.New("overlay startup failed")

// StartRegionSelection runs one overlay session and returns the committed
// rectangle in virtual-screen coordinates, or a cancelled result.
func StartRegionSelection() (selection.Result, error) {
	log.Printf("Starting interactive region selection...")

	result, err := StartInteractiveRegionSelection()
	if err != nil {
		log.Printf("Interactive region selection failed: %v", err)
		return selection.CancelledResult(), err
	}
	if result.Cancelled {
		log.Printf("Region selection cancelled")
		return result, nil
	}

	log.Printf("Region selected: %+v", result)
	return result, nil
}

// probeStack converts window bounds, topmost first, into a prober stack.
func probeStack(bounds []image.Rectangle) selection.Stack {
	stack := make(selection.Stack, 0, len(bounds))
	for _, b := range bounds {
		stack = append(stack, selection.FromImage(b))
	}
	return stack
}
