package main

import (
	"fmt"

	"github.com/enp6s0/dspgate/pkg/cli"
	"github.com/enp6s0/dspgate/pkg/tesira"
)

// printDiscoverySummary prints a one-time table of every discovered block
// once the gateway is ready, before serve starts handling requests.
func printDiscoverySummary(gw *tesira.Gateway) {
	info := gw.Device.Info()
	fmt.Println(cli.Bold(cli.DotPad("device "+info.Hostname, 40) + info.Firmware))

	summaries, err := gw.Device.SupportedBlocks()
	if err != nil {
		return
	}

	t := cli.NewTable("BLOCK", "TYPE", "CHANNELS", "STATE")
	for _, s := range summaries {
		b, err := gw.Device.Block(s.ID)
		if err != nil {
			continue
		}
		t.Row(s.ID, string(s.Type), fmt.Sprintf("%d", len(b.Channels)), blockState(b))
	}
	t.Flush()
}

func blockState(b *tesira.Block) string {
	for _, ch := range b.SortedChannels() {
		if ch.Muted != nil && *ch.Muted {
			return cli.Red("muted")
		}
	}
	if b.USB != nil && !b.USB.Connected {
		return cli.Yellow("disconnected")
	}
	return cli.Green("ok")
}
