package domain

import "context"

// SlotPool representa a capacidade finita de requisições simultâneas de uma conta.
//
// TryAcquire não bloqueia: a checagem e o incremento são um passo só.
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release; chamadas extras ao release são ignoradas.
type SlotPool interface {
	TryAcquire() (release func(), ok bool)
	Acquire(ctx context.Context) (release func(), ok bool)
	InFlight() int
	Cap() int
}
