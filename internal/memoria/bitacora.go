package memoria

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
)

// Bitacora es el registro en texto plano del backing store. Se trunca al
// crearla y se le apendea una línea por swap-out/swap-in. Los errores de E/S
// no son fatales: el estado en memoria manda y la línea perdida no altera
// nada observable.
type Bitacora struct {
	archivo *os.File
	Log     *slog.Logger
}

func NewBitacora(ruta string, logger *slog.Logger) *Bitacora {
	archivo, err := os.OpenFile(ruta, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		logger.Error("Error al crear la bitácora de backing store",
			log.ErrAttr(err),
			log.StringAttr("ruta", ruta),
		)
		archivo = nil
	}
	return &Bitacora{archivo: archivo, Log: logger}
}

func (b *Bitacora) SwapOut(pid, pagina, marco int) {
	b.escribir(fmt.Sprintf("SwapOut: PID %d Page %d from Frame %d\n", pid, pagina, marco))
}

func (b *Bitacora) SwapIn(pid, pagina, marco int) {
	b.escribir(fmt.Sprintf("SwapIn: PID %d Page %d into Frame %d\n", pid, pagina, marco))
}

func (b *Bitacora) escribir(linea string) {
	if b.archivo == nil {
		return
	}
	if _, err := b.archivo.WriteString(linea); err != nil {
		b.Log.Debug("Error al escribir la bitácora de backing store",
			log.ErrAttr(err),
		)
	}
}

func (b *Bitacora) Cerrar() {
	if b.archivo != nil {
		_ = b.archivo.Close()
	}
}
