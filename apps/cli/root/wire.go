package root

import (
	"github.com/voxcampus/voxcampus-platform/apps/cli/cmd/auth"
	"github.com/voxcampus/voxcampus-platform/apps/cli/cmd/bootstrap"
	democmd "github.com/voxcampus/voxcampus-platform/apps/cli/cmd/demo"
	guestcmd "github.com/voxcampus/voxcampus-platform/apps/cli/cmd/guest"
	institutioncmd "github.com/voxcampus/voxcampus-platform/apps/cli/cmd/institution"
	schemacmd "github.com/voxcampus/voxcampus-platform/apps/cli/cmd/schema"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(institutioncmd.Command())
	Root().AddCommand(schemacmd.Command())
	Root().AddCommand(democmd.Command())
	Root().AddCommand(guestcmd.Command())
}
