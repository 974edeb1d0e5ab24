package cmd

import (
	"fmt"
)

const banner = `
                    _          _           _
  _ __   ___   __| | ___  __| | __ _ ___| |__
 | '_ \ / _ \ / _` + "`" + ` |/ _ \/ _` + "`" + ` |/ _` + "`" + ` / __| '_ \
 | | | | (_) | (_| |  __/ (_| | (_| \__ \ | | |
 |_| |_|\___/ \__,_|\___|\__,_|\__,_|___/_| |_|

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Node Dashboard Backend - Version %s\x1b[0m\n\n", Version)
}
