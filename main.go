// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Serialdash - Remote Serial Port Dashboard
//
// Discovers the serial devices a remote agent exposes over WebSocket,
// streams their output and sends commands to them.

package main

import (
	"os"

	"github.com/Thermoquad/serialdash/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
