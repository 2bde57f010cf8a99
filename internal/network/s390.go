package network

import (
	"context"
	"strings"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/sysconfig"
)

// S390Options are the settings chzdev persists for a channel group device.
type S390Options struct {
	Layer2   bool
	PortName string
	Protocol string // ctc only
}

// chzdevArgs builds the chzdev command line enabling a channel group device.
func chzdevArgs(t sysconfig.DeviceType, ch hardware.S390Channel, opts S390Options) ([]string, error) {
	if ch.Read == "" {
		return nil, lcerrors.Invalid("s390 device has no read channel")
	}
	ids := []string{ch.Read}
	if ch.Write != "" {
		ids = append(ids, ch.Write)
	}
	if ch.Data != "" {
		ids = append(ids, ch.Data)
	}
	args := []string{string(t), strings.Join(ids, ":"), "-e"}

	switch t {
	case sysconfig.TypeQETH, sysconfig.TypeHSI:
		layer2 := "0"
		if opts.Layer2 {
			layer2 = "1"
		}
		args = append(args, "layer2="+layer2)
		if opts.PortName != "" {
			args = append(args, "portname="+opts.PortName)
		}
	case sysconfig.TypeCTC:
		if opts.Protocol != "" {
			args = append(args, "protocol="+opts.Protocol)
		}
	case sysconfig.TypeLCS:
	default:
		return nil, lcerrors.Invalid("%s is not an s390 channel device type", t)
	}
	return args, nil
}

// ActivateS390 enables a qeth, hsi, ctc or lcs device persistently.
func (s *Service) ActivateS390(ctx context.Context, t sysconfig.DeviceType, ch hardware.S390Channel, opts S390Options) error {
	args, err := chzdevArgs(t, ch, opts)
	if err != nil {
		return err
	}
	if _, err := s.run(ctx, "chzdev", args...); err != nil {
		return err
	}
	s.log.Info("activated s390 device", "type", t, "bus_id", ch.BusID())
	return nil
}
