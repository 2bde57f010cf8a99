package cmd

import (
	"context"
	"strings"
	"text/tabwriter"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
)

// RunProbe lists the network controllers. With asFixture the list is
// printed in the hardware fixture format instead.
func RunProbe(ctx context.Context, env *Env, asFixture bool) error {
	prober, err := env.hardware()
	if err != nil {
		return err
	}
	nics, err := prober.Probe(ctx)
	if err != nil {
		return err
	}
	if asFixture {
		data, err := hardware.Fixture(nics)
		if err != nil {
			return err
		}
		_, err = env.Out.Write(data)
		return err
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 3, ' ', 0)
	Printer.Fprintln(w, "NAME\tTYPE\tMAC\tBUS ID\tDRIVER\tLINK\tNOTE")
	for i := range nics {
		nic := &nics[i]
		link := "no"
		if nic.Link {
			link = "yes"
		}
		var notes []string
		if nic.Virtual {
			notes = append(notes, "virtual")
		}
		if hardware.SharedBusID(nics, nic) {
			notes = append(notes, "shared bus id")
		}
		if req, ok := hardware.FirmwareHint(nic.Driver); ok && !req.Installed(env.Config.Paths.Root) {
			notes = append(notes, "firmware missing")
		}
		note := strings.Join(notes, ", ")
		Printer.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			nic.Name, nic.Type, dash(nic.HardwareMAC()), dash(nic.BusID), dash(nic.Driver), link, dash(note))
	}
	return w.Flush()
}

// RunDHCPProbe looks for a DHCP server on iface.
func RunDHCPProbe(ctx context.Context, env *Env, iface string) error {
	if iface == "" {
		return lcerrors.Invalid("--name is required")
	}
	offer, err := env.DHCP.Probe(ctx, iface)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	Printer.Fprintf(w, "Server:\t%s\n", offer.Server)
	Printer.Fprintf(w, "Address:\t%s\n", offer.Address)
	Printer.Fprintf(w, "Routers:\t%s\n", dash(strings.Join(offer.Routers, " ")))
	Printer.Fprintf(w, "DNS:\t%s\n", dash(strings.Join(offer.DNS, " ")))
	Printer.Fprintf(w, "Domain:\t%s\n", dash(offer.Domain))
	Printer.Fprintf(w, "Lease:\t%s\n", offer.Lease)
	return w.Flush()
}

// RunStatus prints the runtime state of the devices.
func RunStatus(ctx context.Context, env *Env, devs []string) error {
	status, err := env.Net.Status(ctx, devs...)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(env.Out, 0, 0, 3, ' ', 0)
	Printer.Fprintln(w, "DEVICE\tSTATE")
	for _, s := range status {
		Printer.Fprintf(w, "%s\t%s\n", s.Name, s.State)
	}
	return w.Flush()
}
