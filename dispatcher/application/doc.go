// Package application contém os casos de uso do dispatcher: registry de contas,
// admissão (concorrência por conta), ritmo opcional e o próprio despacho.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Dispatcher.Dispatch(ctx, acc, req) devolve o corpo da resposta ou um erro tipado.
package application
