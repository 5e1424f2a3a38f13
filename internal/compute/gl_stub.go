//go:build !opengl

package compute

type GLDevice struct{}

func NewGLDevice() (*GLDevice, error) {
	return nil, ErrNoDevice
}

func (d *GLDevice) Name() string    { return "opengl (not available)" }
func (d *GLDevice) Available() bool { return false }
func (d *GLDevice) Release()        {}

func (d *GLDevice) Compile(vertex, fragment string, outputs []string) (Shader, error) {
	return nil, ErrNoDevice
}

func (d *GLDevice) NewBuffer() (DeviceBuffer, error) {
	return nil, ErrNoDevice
}

func (d *GLDevice) Dispatch(s Shader, mode Primitive, first, count int) error {
	return ErrNoDevice
}
