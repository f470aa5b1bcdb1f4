package cmd

import (
	"fmt"
)

const banner = `
  _  __          ____      _
 | |/ /___ _   _|  _ \ ___| | __ _ _   _
 | ' // _ \ | | | |_) / _ \ |/ _` + "`" + ` | | | |
 | . \  __/ |_| |  _ <  __/ | (_| | |_| |
 |_|\_\___|\__, |_| \_\___|_|\__,_|\__, |
           |___/                   |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Credential Custody Relay - Version %s\x1b[0m\n\n", Version)
}
