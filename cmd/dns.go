package cmd

import (
	"context"
	"strings"
	"text/tabwriter"

	"grimm.is/lancfg/internal/i18n"
)

// DNSOptions are the host name and resolver changes. Nil fields are left
// alone; with no field set the current settings are shown.
type DNSOptions struct {
	Hostname      *string
	Domain        *string
	Nameservers   *string
	Search        *string
	Policy        *string
	WriteHostname *bool
	HostIP        string // address the host name resolves to in /etc/hosts
	Apply         bool   // run netconfig after writing
}

func (o DNSOptions) empty() bool {
	return o.Hostname == nil && o.Domain == nil && o.Nameservers == nil &&
		o.Search == nil && o.Policy == nil && o.WriteHostname == nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

// RunDNS shows or changes the host name and name servers.
func RunDNS(ctx context.Context, env *Env, opts DNSOptions) error {
	store := env.DNS()
	st, err := store.Read()
	if err != nil {
		return err
	}

	if opts.empty() {
		w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
		Printer.Fprintf(w, "Hostname:\t%s\n", st.FQDN())
		Printer.Fprintf(w, "Name servers:\t%s\n", strings.Join(st.Nameservers, " "))
		Printer.Fprintf(w, "Search list:\t%s\n", strings.Join(st.Searchlist, " "))
		if st.Policy != "" {
			Printer.Fprintf(w, "Policy:\t%s\n", st.Policy)
		}
		if rc, err := store.ReadResolvConf(); err == nil {
			Printer.Fprintf(w, "In use:\t%s\n", strings.Join(rc.Nameservers, " "))
		}
		return w.Flush()
	}

	if opts.Hostname != nil {
		host, domain, found := strings.Cut(*opts.Hostname, ".")
		st.Hostname = host
		if found && opts.Domain == nil {
			st.Domain = domain
		}
	}
	if opts.Domain != nil {
		st.Domain = *opts.Domain
	}
	if opts.Nameservers != nil {
		st.Nameservers = splitList(*opts.Nameservers)
	}
	if opts.Search != nil {
		st.Searchlist = splitList(*opts.Search)
	}
	if opts.Policy != nil {
		st.Policy = *opts.Policy
	}
	if opts.WriteHostname != nil {
		st.WriteHostname = *opts.WriteHostname
	}

	if err := store.Write(st, opts.HostIP); err != nil {
		return err
	}
	env.printf(i18n.MsgUpdated, "DNS")
	if opts.Apply {
		return store.Apply(ctx)
	}
	return nil
}
