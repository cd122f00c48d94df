package common

// CoverImagesPrefix is the object-storage prefix every cover blob lives under:
// cover_images/{book_id}/{file_name}.
const CoverImagesPrefix = "cover_images"

// EnvPrefix prefixes every environment variable the server configuration reads.
const EnvPrefix = "BOOKSHELF_"
