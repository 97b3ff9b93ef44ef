// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build !windows

package wsi

// keymap is empty on platforms without a native WSI backend;
// keyFrom falls back to KeyUnknown for every code.
var keymap []Key
