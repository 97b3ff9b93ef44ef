// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build !windows

package wsi

func init() {
	initDummy()
}
