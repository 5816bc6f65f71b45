package billing

import "github.com/beevik/etree"

// textoElemento devuelve el texto del primer elemento con ese nombre en
// cualquier nivel del XML, ignorando espacios de nombres. Cadena vacía si el
// documento no parsea o el elemento no existe.
func textoElemento(xml []byte, nombre string) string {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		return ""
	}
	raiz := doc.Root()
	if raiz == nil {
		return ""
	}
	if raiz.Tag == nombre {
		return raiz.Text()
	}
	if el := buscarElemento(raiz, nombre); el != nil {
		return el.Text()
	}
	return ""
}

func buscarElemento(padre *etree.Element, nombre string) *etree.Element {
	for _, hijo := range padre.ChildElements() {
		if hijo.Tag == nombre {
			return hijo
		}
		if encontrado := buscarElemento(hijo, nombre); encontrado != nil {
			return encontrado
		}
	}
	return nil
}
