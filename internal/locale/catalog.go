package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var spanish = map[string]string{
	"Unauthenticated.":             "No autenticado.",
	"This action is unauthorized.": "Esta acción no está autorizada.",
	"Resource not found":           "Recurso no encontrado",
	"Validation failed":            "La validación falló",
	"Invalid query parameter":      "Parámetro de consulta no válido",
	"Invalid request body":         "Cuerpo de la solicitud no válido",
	"Internal server error":        "Error interno del servidor",
	"Delete failed":                "La eliminación falló",
	"Invalid email or password":    "Correo electrónico o contraseña no válidos",
	"User account is inactive":     "La cuenta de usuario está inactiva",
	"Invalid token":                "Token no válido",
	"Token has expired":            "El token ha expirado",

	"The %s field is required.":                     "El campo %s es obligatorio.",
	"The %s must be a valid email address.":         "El campo %s debe ser una dirección de correo válida.",
	"The %s must be at least %s characters.":        "El campo %s debe contener al menos %s caracteres.",
	"The %s may not be greater than %s characters.": "El campo %s no debe contener más de %s caracteres.",
	"The %s must be at least %s.":                   "El campo %s debe ser al menos %s.",
	"The %s may not be greater than %s.":            "El campo %s no debe ser mayor que %s.",
	"The %s must be one of: %s.":                    "El campo %s debe ser uno de: %s.",
	"The %s confirmation does not match.":           "La confirmación de %s no coincide.",
	"The %s has already been taken.":                "El valor del campo %s ya está en uso.",
	"The %s is invalid.":                            "El campo %s no es válido.",

	"Filter %s is not allowed.":      "El filtro %s no está permitido.",
	"Sort %s is not allowed.":        "El orden %s no está permitido.",
	"The page %s must be a number.":  "La página %s debe ser un número.",
	"The selected action is invalid.": "La acción seleccionada no es válida.",
	"A file or a base64 payload with a filename is required.":      "Se requiere un archivo o un contenido base64 con nombre de archivo.",
	"The media id must reference an attachment of this resource.":  "El id de medio debe hacer referencia a un adjunto de este recurso.",
	"The file type %s is not allowed.":                             "El tipo de archivo %s no está permitido.",
	"The file may not be greater than %d bytes.":                   "El archivo no debe ser mayor que %d bytes.",
	"The base64 content could not be decoded.":                     "El contenido base64 no pudo decodificarse.",
	"The selected parent is invalid.":                              "El directorio padre seleccionado no es válido.",
	"The column %s is not translatable for %s.":                    "La columna %s no es traducible para %s.",
	"The locale %s is not supported.":                              "El idioma %s no está soportado.",
	"The resource type does not match the endpoint.":               "El tipo de recurso no coincide con el endpoint.",
	"The resource id does not match the endpoint.":                 "El id del recurso no coincide con el endpoint.",
	"The relationship %s does not exist.":                          "La relación %s no existe.",
	"The priority must be one of: PRINCIPAL, SECONDARY, ANTAGONIST.": "La prioridad debe ser una de: PRINCIPAL, SECONDARY, ANTAGONIST.",
}

func init() {
	for key, msg := range spanish {
		_ = message.SetString(language.Spanish, key, msg)
	}
}
